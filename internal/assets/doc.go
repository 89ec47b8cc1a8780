// Package assets provides the CSS inlined into rendered table and text pages.
//
// Two styles exist, "table" and "text". Both ship embedded in the binary.
// An operator can override either one by pointing the converter at a
// directory laid out as:
//
//	{dir}/
//	└── styles/
//	    ├── table.css
//	    └── text.css
//
// StyleResolver reads the override first and falls back to the embedded file
// when the override is absent, so a directory may carry only one of the two.
// Override paths are resolved through symlinks and must stay inside {dir}.
package assets
