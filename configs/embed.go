// Package configs provides the embedded configuration template for
// commonplace. The template is embedded at build time so `commonplace
// config init` can create a starter config file in any distribution of
// the binary.
package configs

import _ "embed"

// ConfigTemplate is the starter configuration written by
// `commonplace config init`. All values shown are the defaults; the
// file exists so users have something to edit.
//
//go:embed config.example.yaml
var ConfigTemplate string
