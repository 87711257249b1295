// Package configs provides embedded configuration templates.
//
// Templates are embedded at build time so they ship inside the binary
// regardless of how it was installed. `ragsync init` writes the config
// template into the working directory.
package configs

import _ "embed"

// ConfigTemplate is the annotated ragsync.yaml template written by
// `ragsync init`.
//
//go:embed ragsync.example.yaml
var ConfigTemplate string
