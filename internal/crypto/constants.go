package crypto

const (
	HashSize             = 32
	Ed25519SignatureSize = 64
)
