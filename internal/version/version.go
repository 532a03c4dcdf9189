package version

// Version is overridden at release time with -ldflags "-X ...version.Version=<tag>".
var Version = "v0.1.0-dev"
