// Copyright (c) 2025 The SIROS Foundation and go-edi AUTHORS.
// Use of this source code is governed by a BSD 2-clause
// license that can be found in the LICENSE file.

// Package sftpx implements SFTP file exchange with trading partners.
//
// Partners are registered with a [Registry] holding connection details and
// the directory layout agreed with the partner (inbound, outbound,
// archive). The [Client] performs file operations against a registered
// partner:
//
//   - [Client.Upload]: write a file to the partner's inbound directory
//   - [Client.Download]: fetch a file from the partner's outbound directory
//   - [Client.List]: enumerate files awaiting pickup
//   - [Client.Delete], [Client.Move]: post-processing cleanup
//   - [Client.TestConnection]: connectivity and authentication check
//
// Each operation opens a fresh SSH connection, performs the transfer, and
// closes it. Partner sessions are short-lived by design; connection reuse
// is left to the dispatch layer's batching.
//
// Authentication is by password or by private key. Keys are referenced by
// id and resolved through a [KeyResolver] so that private material stays
// inside the certificate manager.
package sftpx
