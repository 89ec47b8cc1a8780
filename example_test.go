package doc2img_test

import (
	"errors"
	"fmt"

	"github.com/alnah/go-doc2img"
)

// ExampleDetectFormat shows how file names map to input formats.
func ExampleDetectFormat() {
	for _, name := range []string{"report.xlsx", "export.csv", "notes.txt", "slides.pptx"} {
		f, err := doc2img.DetectFormat(name)
		if errors.Is(err, doc2img.ErrUnsupportedFormat) {
			fmt.Printf("%s: %s\n", name, doc2img.UserMessage(err))
			continue
		}
		fmt.Printf("%s: %s\n", name, f)
	}
	// Output:
	// report.xlsx: tabular-workbook
	// export.csv: delimited-text
	// notes.txt: plain-text
	// slides.pptx: this file type is not supported; supported files: .csv, .tsv, .txt, .xls, .xlsm, .xlsx
}

// ExampleKindOf shows the machine-readable error categories.
func ExampleKindOf() {
	err := fmt.Errorf("sheet 2: %w", doc2img.ErrRenderTimeout)
	fmt.Println(doc2img.KindOf(err), doc2img.IsRetryable(err))
	// Output: RENDER_TIMEOUT true
}
