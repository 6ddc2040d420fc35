// Package models holds the GORM row types for variation families, feed
// submissions and listing snapshots. Domain entities carry no ORM tags; each
// model has a FromDomain constructor and a ToDomain mapper used by the
// repositories in the persistence package.
package models
