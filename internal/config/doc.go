// Package config loads provider definitions and runtime settings.
//
// A provider definition is CUE. Each provider.<name> struct declares the
// entity table and its fields, the engine options, the text and keyword
// registrations, default and unique sorts, and optionally full-text
// settings. CompileDefinition turns one into a search engine over
// schema.Record entities; errors carry their CUE position.
//
// Runtime settings (database, dialect, culture, output format) come from
// flags and QSEARCH_* environment variables through viper.
package config
