// Package deduplication finds contacts that represent the same person.
//
// # Overview
//
// Contacts arrive from several channels (manual entry, CSV import, inbound
// messages) and the same person often ends up with more than one record.
// The Detector scans a listing of contacts and returns groups of duplicates
// that the merge package can collapse into a single record.
//
// # Passes
//
// Detection runs a fixed sequence of passes over the same working set.
// A contact claimed by a pass is marked processed and never considered by a
// later one, so groups are pairwise disjoint.
//
//  1. id-collision: the same storage id listed more than once. This is a
//     listing artifact, not two people, so its members are reported as
//     IDCollisions and are never merged.
//  2. phone-match: contacts whose normalized phone numbers are equivalent
//     (see identity.PhoneKey). Contacts without a phone never match.
//  3. email-match (opt-in): contacts with the same normalized email.
//
// Order within a group follows the scan order of the input. Callers list
// contacts newest first, so the first member is the most recently created.
//
// # Configuration
//
// See DefaultConfig() for default values. Config also carries the merge
// settings (card survivor policy, write throttle, merge timeout) so that a
// single `dedup:` section configures the whole pipeline.
//
// # Scaling
//
// Each pass buckets contacts by key, which is linear in the number of
// contacts. A pairwise scan would be O(n²); at CRM scale (thousands of
// contacts) either is fine, but bucketing keeps a full scan well under a
// second for hundreds of thousands.
package deduplication
