package handlers

import (
	"blend-browser/internal/database"
	"blend-browser/internal/scanner"
	"blend-browser/internal/startup"
	"blend-browser/internal/thumbcache"
)

type Handlers struct {
	db                *database.Database
	scanner           *scanner.Scanner
	store             *thumbcache.DiskStore
	libraryDir        string
	thumbnailsEnabled bool
}

func New(db *database.Database, sc *scanner.Scanner, store *thumbcache.DiskStore, config *startup.Config) *Handlers {
	return &Handlers{
		db:                db,
		scanner:           sc,
		store:             store,
		libraryDir:        config.LibraryDir,
		thumbnailsEnabled: config.ThumbnailsEnabled && store != nil,
	}
}
