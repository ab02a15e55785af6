// Package store defines the persistence contracts of the resource engine:
// stores for resource rows and relationship membership, the DBTX
// abstraction shared by *sql.DB and *sql.Tx, transaction helpers and the
// error sentinels every implementation maps its failures onto.
package store
