// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package auth guards the import trigger and the progress WebSocket with
// HS256 bearer tokens.
//
// Tokens carry the platform's {"userId": ...} claim and are issued by the
// platform's login flow (or by "cbdimport token" for operators). The
// middleware answers 401 when no token is presented and 403 when the token
// does not verify, matching the platform's own API. Browsers cannot set
// headers on a WebSocket handshake, so the token query parameter is accepted
// as well.
//
// With security.auth_mode=none every request passes with anonymous claims.
package auth
