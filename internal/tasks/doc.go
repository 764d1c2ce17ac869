// Package tasks turns a list of artist names into a playlist of their top tracks, with real-time progress reporting.
//
// # Pipeline
//
// [PlaylistEngine.Run] drives the build:
//
//  1. [Normalizer] : derives search variants for each name
//     - Built-in spelling fixes and alternate names, extended from config
//     - & / and interchange when only one form is present
//
//  2. [Resolver] : maps a name to one catalog artist
//     - Tries each variant with artist search, typed search, then raw search
//     - Prefers an exact case-insensitive name match
//
//  3. [Fetcher] : collects up to seven distinct track ids per artist
//
//  4. [Aggregator] : walks names in order, paced by a rate limiter
//     - Unresolved artists and artists without tracks become warnings
//     - Ids are deduplicated across artists in first-seen order
//
//  5. [Publisher] : creates the playlist and adds ids in batches of 50
//
// # Strategy Chains
//
// Every remote step is an ordered chain of call conventions. The strategies a session supports are
// selected once, by checking the capability interfaces in package services. The first strategy that
// succeeds wins; when all fail, a [ChainError] carries every failure.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
