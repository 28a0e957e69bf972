// Package store persists macro timelines.
//
// Repository is implemented by FileStore, which keeps one JSON record per
// macro in a directory per category, and by the sqlite sub-package.
// Duplicate, UpdateInfo, Stats, Export and Import work with any
// Repository.
//
// File layout:
//
//	macros/
//	  general/
//	  movement/
//	  battles/
//	    Sweet Scent.json
//	    Sweet Scent_1.json
//	  inventory/
//	  trading/
//	  custom/
//
// FileStore IDs are "<category>:<file stem>", for example
// "battles:Sweet Scent_1".
package store
