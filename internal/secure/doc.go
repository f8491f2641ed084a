// Package secure keeps vault passwords out of plain process memory.
//
// A Password wraps a memguard enclave. The plaintext only exists while a
// caller holds the value returned by Reveal, and the enclave is encrypted
// with XSalsa20Poly1305 the rest of the time.
//
//	pw := secure.NewPassword("hunter22")
//	defer pw.Destroy()
//
//	plain, err := pw.Reveal()
//	if err != nil {
//	    return err
//	}
//	key := deriveKey(plain)
//
// If mlock is unavailable (RLIMIT_MEMLOCK on Linux) memguard degrades to
// ordinary allocations; the enclave is still encrypted.
//
// It does NOT protect against attackers with root access to the running
// process or hardware-level attacks.
package secure
