// Package password provides argon2id hashing and verification in PHC string
// format. The engine installs [Argon2] as its default credential verifier;
// integrations that store hashes under a different scheme can supply their
// own verifier instead.
package password
