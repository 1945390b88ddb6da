// Package password hashes and verifies identity-provider credentials with
// argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Cost parameters are read back from the stored value on verify.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; identity providers own storage.
//   - Log plaintext passwords.
package password
