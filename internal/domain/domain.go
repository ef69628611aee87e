// Package domain holds the coordinator's core data model: Node, Job,
// FileLock, and TaskFolderProgress. These are GORM-tagged structs shared by
// the persistent store, the component services, and the HTTP layer's JSON
// encoding — there is no separate wire/DTO type for the core entities.
package domain
