// Package services implements the HTTP clients lbx talks to.
//
// # ListenBrainz
//
// [ListenBrainzService] owns the user token and a persistent [http.Client].
// The token is attached by an [oauth2.Transport] with token type "Token", so every request carries
// "Authorization: Token <token>". Construction validates the token and fails with [shared.ErrInvalidToken]
// when the remote rejects it. A later 401 marks the client unvalidated until [ListenBrainzService.ValidateToken]
// succeeds again.
//
// Playlist and listen calls never return transport or status errors to their callers: failures are
// classified, logged, and turned into "no data" or "not submitted".
//
// # MusicBrainz
//
// [MusicBrainzService] looks up recordings with their artist credits. It is paced to one request per
// second by default and identifies itself with a descriptive User-Agent.
//
// # Error Handling
//
// Non-2xx responses are wrapped in [StatusError], which unwraps to one of:
//   - [shared.ErrBadRequest] : 400, the body is kept for logging
//   - [shared.ErrUnauthorized] : 401
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrUnexpectedStatus] : anything else
//
// Connection failures wrap [shared.ErrTransport] and decode failures wrap [shared.ErrParse].
package services
