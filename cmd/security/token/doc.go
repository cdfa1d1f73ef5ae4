// Package token verifies the HS256 bearer tokens issued by the identity
// provider. Issuance lives outside this server; only verification and
// subject extraction happen here.
package token
