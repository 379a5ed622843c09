package fidokey

// handleList implements opcode 0 (spec §4.7/§6): no payload, response
// `[STATUS_OK, count, (credential_id[16], app_id_hash[20])·count]`.
func (d *Dispatcher) handleList() error {
	creds, err := d.Store.Enumerate()
	if err != nil {
		status := statusFor(err)
		d.recordAudit(OpList, status, nil)
		return d.writeStatus(status)
	}

	body := make([]byte, 0, 1+len(creds)*36)
	body = append(body, byte(len(creds)))
	for _, c := range creds {
		body = append(body, c.CredentialID[:]...)
		body = append(body, c.AppIDHash[:]...)
	}

	d.recordAudit(OpList, StatusOK, map[string]any{"slot_count": float64(len(creds))})
	return d.writeAll([]byte{byte(StatusOK)}, body)
}

// handleMakeCredential implements opcode 1 (spec §4.7/§6).
func (d *Dispatcher) handleMakeCredential() error {
	payload, err := d.readN(20)
	if err != nil {
		return err
	}
	var appIDHash AppIDHash
	copy(appIDHash[:], payload)

	if err := d.confirm(); err != nil {
		status := statusFor(err)
		d.recordAudit(OpMakeCredential, status, nil)
		return d.writeStatus(status)
	}

	pub, priv, ok := d.Crypto.MakeKey()
	if !ok {
		d.recordAudit(OpMakeCredential, StatusCryptoFailed, nil)
		return d.writeStatus(StatusCryptoFailed)
	}

	// Documented truncation (spec §4.7/§9): the credential id is the
	// first 16 bytes of the app id hash, collisions and all.
	var credentialID CredentialID
	copy(credentialID[:], appIDHash[:16])

	if err := d.Store.Append(appIDHash, credentialID, priv); err != nil {
		// The freshly generated key pair is discarded; nothing reaches
		// the store on a Full result.
		status := statusFor(err)
		d.recordAudit(OpMakeCredential, status, nil)
		return d.writeStatus(status)
	}

	d.recordAudit(OpMakeCredential, StatusOK, nil)
	return d.writeAll([]byte{byte(StatusOK)}, credentialID[:], pub[:])
}

// handleGetAssertion implements opcode 2 (spec §4.7/§6).
func (d *Dispatcher) handleGetAssertion() error {
	appPayload, err := d.readN(20)
	if err != nil {
		return err
	}
	digestPayload, err := d.readN(20)
	if err != nil {
		return err
	}
	var appIDHash AppIDHash
	copy(appIDHash[:], appPayload)
	var digest Digest
	copy(digest[:], digestPayload)

	if err := d.confirm(); err != nil {
		status := statusFor(err)
		d.recordAudit(OpGetAssertion, status, nil)
		return d.writeStatus(status)
	}

	cred, found, err := d.Store.FindByAppID(appIDHash)
	if err != nil {
		status := statusFor(err)
		d.recordAudit(OpGetAssertion, status, nil)
		return d.writeStatus(status)
	}
	if !found {
		d.recordAudit(OpGetAssertion, StatusNotFound, nil)
		return d.writeStatus(StatusNotFound)
	}

	sig, ok := d.Crypto.Sign(cred.PrivateKey, digest)
	if !ok {
		d.recordAudit(OpGetAssertion, StatusCryptoFailed, nil)
		return d.writeStatus(StatusCryptoFailed)
	}

	d.recordAudit(OpGetAssertion, StatusOK, nil)
	return d.writeAll([]byte{byte(StatusOK)}, cred.CredentialID[:], sig[:])
}

// handleReset implements opcode 3 (spec §4.7/§6).
func (d *Dispatcher) handleReset() error {
	if err := d.confirm(); err != nil {
		status := statusFor(err)
		d.recordAudit(OpReset, status, nil)
		return d.writeStatus(status)
	}

	if err := d.Store.EraseAll(); err != nil {
		status := statusFor(err)
		d.recordAudit(OpReset, status, nil)
		return d.writeStatus(status)
	}

	d.recordAudit(OpReset, StatusOK, nil)
	return d.writeStatus(StatusOK)
}
