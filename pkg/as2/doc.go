// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as2 implements the AS2 (Applicability Statement 2, RFC 4130)
transport for partner-to-partner document delivery over HTTP(S).

# Identities

Two registries exist side by side. Remote partners carry the endpoint URL,
AS2 identifier, and MDN mode used when sending to them. Local profiles are
the AS2 identities this process answers as on receive; one process may hold
several. Both registries are last-write-wins by id and safe for concurrent
use.

# Integrity and Receipts

Every send computes a Message Integrity Check (MIC) over the transmitted
body. A partner configured for synchronous MDN returns the signed receipt
inline in the HTTP response, where its Received-Content-MIC is checked
against the computed MIC. Asynchronous MDN partners return nothing inline;
the receipt arrives as a later inbound transmission correlated through the
Original-Message-ID field.

The S/MIME primitives for payload signing and encryption are an external
capability; this package carries the MIC and disposition semantics of the
protocol.

# Receiving

[Client.Receive] validates the mandatory AS2-From, AS2-To, and Message-Id
headers, resolves AS2-To against the local profile registry, dispatches the
document to registered handlers, and builds the MDN receipt. The client
also implements the transport server's handler interface, so it can be
mounted directly on an HTTPS endpoint.
*/
package as2
