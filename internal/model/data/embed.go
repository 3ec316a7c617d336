// Package data holds the embedded IGRF-13 coefficient file in the standard
// igrf13coeffs.txt text format published by IAGA Working Group V-MOD.
package data

import _ "embed"

// IGRF13 is the embedded 13th-generation coefficient table (1900.0–2020.0
// main-field epochs plus the 2020–25 secular-variation column).
//
//go:embed igrf13coeffs.txt
var IGRF13 []byte
