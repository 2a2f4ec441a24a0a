package config

// Version is the graph2seq binary version.
// Set at build time via: -ldflags "-X github.com/graphtext/graph2seq/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
