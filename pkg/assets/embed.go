package assets

import "embed"

// Content is the embedded status page.
//
//go:embed *.html js/* css/*
var Content embed.FS
