// Package services implements the collaborators the synchronization pipeline talks to.
//
// # Catalog
//
// [Catalog] is the destination service abstraction. [YandexMusic] implements it against the Yandex Music
// REST API. The OAuth credential is a constructor argument; an [oauth2.Transport] over a static token adds
// the Authorization header to every call, and a [rate.Limiter] paces them.
// Responses are read with gjson because entity ids arrive as numbers or strings depending on the type.
//
// # Source
//
// [Source] reads the source playlist and fetches audio. [YTDLP] implements it with goutubedl, which drives
// the yt-dlp binary for both flat playlist extraction and single-item audio download.
//
// # Uploader
//
// [Uploader] submits a fetched file as one multipart part to a just-issued upload target over a
// retryablehttp client: a per-request timeout, retries only for 5xx statuses from the configured list,
// exponential backoff, and certificate validation enabled unless explicitly disabled.
// Failures are returned as [*UploadError] whose Kind separates TLS, timeout and other transport errors.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrSearchFailed] : the search call itself failed (not a legitimate empty result)
//   - [shared.ErrRevisionConflict] : insertion against a stale playlist revision
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrSourceUnavailable] : a source item that can never be fetched
//   - [shared.ErrUploadTLS], [shared.ErrUploadTimeout], [shared.ErrUploadTransport] : upload failure kinds
package services
