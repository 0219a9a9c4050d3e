// Package dbferry migrates a MySQL or MariaDB database into PostgreSQL:
// schema introspection and translation, FK-aware table ordering, bulk row
// copy, and post-load foreign key, sequence and trigger creation.
//
// Programmatic use goes through Migrator; cmd/dbferry wraps it as a
// TOML-config-driven CLI, and cmd/dbferry-mcp exposes it as an MCP tool
// server for driving migrations from an agent.
package dbferry
