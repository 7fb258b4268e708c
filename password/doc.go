// Package password hashes and verifies login passwords.
//
// New hashes use bcrypt (cost 10 by default) unless argon2id is selected.
// Verification dispatches on the stored hash prefix, so bcrypt hashes
// ($2a$, $2b$, $2y$) and PHC-encoded argon2id hashes both work:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify never panics; a missing or malformed hash is a mismatch.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other procureauth package.
//   - Log plaintext passwords.
package password
