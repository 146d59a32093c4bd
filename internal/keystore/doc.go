// Copyright (c) 2025 The SIROS Foundation and go-edi AUTHORS.
// Use of this source code is governed by a BSD 2-clause
// license that can be found in the LICENSE file.

// Package keystore manages SSH key pairs and X.509 certificates for
// trading partner connections.
//
// Key pairs are generated (RSA or Ed25519) or imported (public half
// only) and stored per tenant. Private key material never leaves this
// package except through [Manager.PrivateKeyPEM]; list and get
// operations return metadata with the private key blanked. The SFTP
// transport obtains signers through [Manager.Resolver] so it never sees
// raw key bytes either.
//
// When a key encryption key is configured, private keys are sealed with
// AES-256-GCM before they reach the store.
//
// Certificates are tracked for partner HTTPS and AS2 endpoints, with
// [Manager.ExpiringWithin] feeding rotation alerts.
package keystore
