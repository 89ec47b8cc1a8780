// Package pipeline implements the document-to-markup stage of the conversion.
//
// It turns an input document into one self-contained HTML page per logical
// unit, ready to be rendered and captured by headless Chrome:
//   - Workbooks (xlsx, xlsm via excelize; legacy xls via extrame/xls) yield
//     one table page per non-empty sheet, in workbook order
//   - Delimited text (csv and friends) is normalized into a single sheet
//   - Plain text is decoded (BOM, UTF-16, GBK fallback), escaped and embedded
//     in a whitespace-preserving block
//
// Rendering and capture are handled by the root doc2img package. This package
// never touches the browser and performs no I/O beyond the bytes it is given.
package pipeline
