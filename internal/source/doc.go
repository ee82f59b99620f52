// Package source provides the [expdict.Source] implementations used by
// dictctl: plain-text word lists and self-persisted user history.
package source
