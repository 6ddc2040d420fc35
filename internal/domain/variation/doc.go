// Package variation contains the Variation bounded context.
// It detects groups of independently listed products that are really one item
// in different variants and models the parent/child families published to the
// external catalog.
//
// Key concepts:
//   - VariationTheme: a known axis of variation (size, color, ...) with its detection vocabulary
//   - TitleNormalizer / FamilyClusterer: reduce titles to a base identity and group products by it
//   - ThemeDetector / ConfidenceScorer: decide which attributes vary and how convincing a family is
//   - RelationshipBuilder: turn an approved analysis into parent/child relationships
//   - VariationFamily / FeedSubmission: the publishable family and its external processing job
//
// Design Pattern: Ports & Adapters
//   - Ports (CatalogClient, FeedClient, repositories, ...) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package variation
