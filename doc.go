// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goedi implements a trading-partner integration layer for B2B
electronic document exchange.

# Overview

go-edi parses and generates ANSI X12 EDI transaction sets, transports
business documents to and from external trading partners over AS2 and
SFTP, and tracks every exchange attempt in an append-only transport log
for audit and retry.

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-edi/pkg/x12         - X12 segment model and transaction-set codecs (850/856/997)
	github.com/sirosfoundation/go-edi/pkg/as2         - AS2 transport with MIC integrity and MDN receipts
	github.com/sirosfoundation/go-edi/pkg/sftpx       - SFTP transport with managed partner directories
	github.com/sirosfoundation/go-edi/pkg/transport   - HTTPS client/server with TLS 1.2/1.3
	github.com/sirosfoundation/go-edi/pkg/retry       - Unified retry/backoff policy
	github.com/sirosfoundation/go-edi/pkg/compression - GZIP payload compression

Server-side services live under internal/:

	internal/keystore - SSH key pair and certificate lifecycle per tenant
	internal/storage  - Store interfaces with MongoDB and in-memory backends
	internal/partner  - Trading partner aggregates over both transports
	internal/translog - Transport log service with statistics
	internal/polling  - Scheduled inbound SFTP directory watcher
	internal/delivery - Outbound delivery queue with retry

# Quick Start

To parse a purchase order and send it over AS2:

	import (
	    "github.com/sirosfoundation/go-edi/pkg/as2"
	    "github.com/sirosfoundation/go-edi/pkg/x12"
	)

	doc, errs := x12.Parse(ts)
	if x12.HasFatal(errs) {
	    // handle malformed input
	}

	client := as2.NewClient(&as2.ClientConfig{LocalDomain: "edi.example.com"})
	client.Registry().Register(as2.PartnerConfig{
	    PartnerID: "acme",
	    AS2ID:     "ACME-CORP",
	    URL:       "https://edi.acme.example/as2",
	    MDNMode:   as2.MDNSync,
	    Active:    true,
	})
	result, err := client.Send(ctx, "acme", payload, "application/edi-x12")

# Scope

Interchange (ISA/IEA) and functional group (GS/GE) envelope handling is the
responsibility of an external collaborator, as are the S/MIME primitives
behind AS2 payload signing and encryption. The transports here carry the
message-integrity digest (MIC) and disposition semantics.

# License

BSD-2-Clause License
*/
package goedi
