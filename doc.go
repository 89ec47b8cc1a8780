// Package doc2img renders spreadsheets, delimited text and plain text to
// PNG images using headless Chrome.
//
// # Quick Start
//
// Create a converter, convert a document, and close when done:
//
//	conv, err := doc2img.NewConverter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	res, err := conv.Convert(ctx, doc2img.Request{
//	    Name:   "report.xlsx",
//	    Source: doc2img.FileSource("report.xlsx"),
//	})
//	if err != nil {
//	    log.Fatal(doc2img.UserMessage(err))
//	}
//	fmt.Println(res.Summary()) // converted 2/2 images
//
// Workbooks (.xlsx, .xlsm, .xls) produce one image per non-empty sheet, in
// sheet order. Delimited text (.csv, .tsv) produces one image of a single
// table. Plain text (.txt) produces one image of the escaped text.
//
// # Conversion Pipeline
//
// Each request moves through these states:
//
//  1. Validated: the format is resolved from the declared format or the
//     file extension; unsupported inputs are rejected before anything is read
//  2. Downloaded: the source is staged in memory, or spooled to a temp file
//     when large
//  3. Converting: the document becomes one HTML page per sheet
//  4. Rendering: every page is loaded in its own incognito browser context,
//     framed around its table or text block and captured
//  5. Assembling: images are collected in document order
//
// A request ends Completed when at least one image was produced, and Failed
// otherwise. Pages that fail are listed in Result.Failures; the others are
// still returned. Staged inputs are released on every exit path.
//
// # Errors
//
// Errors wrap package sentinels (ErrParse, ErrRenderTimeout, ...) for use
// with errors.Is. KindOf returns a stable machine-readable category,
// IsRetryable tells whether a retry may help, and UserMessage gives a short
// explanation suitable for end users.
//
// # Browser
//
// All conversions share one Chrome process, launched on first use or by
// Warmup. A crashed browser is relaunched on the next request and the page
// that hit the crash is retried once. WithMaxContexts bounds how many pages
// render at the same time across all requests.
//
// Set ROD_BROWSER_BIN or WithBrowserBin to use a pre-installed Chrome;
// otherwise a compatible Chromium is downloaded on first run. Containers
// usually need WithNoSandbox(true).
package doc2img
