// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package transport implements the HTTPS transport layer used by the AS2
// protocol binding, with TLS 1.2/1.3 support.
//
// The client POSTs a document with caller-supplied protocol headers and
// returns the response body, headers, and a retryability classification:
// timeouts, connection failures, HTTP 429, and 5xx responses are retryable;
// other 4xx responses are business errors and are not.
//
// The server accepts inbound documents on a configurable path and hands
// the raw headers and body to a [Handler]; the handler's response bytes are
// written back with its content type (for AS2, a synchronous MDN).
package transport
