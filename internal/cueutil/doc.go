// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE helpers shared by configuration loading:
// schema unification and decoding, size limits, and error formatting that
// reports the offending field as a JSON-style path.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Config](schema, data, "#Config",
//	    cueutil.WithFilename("vgate.cue"), cueutil.WithConcrete(false))
package cueutil
