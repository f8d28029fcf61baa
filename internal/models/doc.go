// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

/*
Package models defines the data shapes shared by the Tributary sync engine.

Key Components:

  - SourceKind: identifies one of the five external platforms
  - SourceRecord: a normalized record produced by a connector
  - SyncWindow: an inclusive calendar-day range to fetch
  - SyncResult: terminal snapshot of one sync session
  - RunReport: per-source breakdown of a coordinator run
  - BatchOutcome: inserted/updated counts for one writer batch

JSON field names on SyncResult and RunReport follow the trigger API contract
(camelCase), which differs from the snake_case used by the database layer.
*/
package models
