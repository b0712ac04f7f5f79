package keys

import "encoding/base64"

// JWK is the public half of an RSA signing key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns every key that still verifies tokens.
func (r *Ring) JWKS() JWKS {
	pks := r.PublicKeys()
	doc := JWKS{Keys: make([]JWK, 0, len(pks))}
	for _, pk := range pks {
		doc.Keys = append(doc.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: pk.KID,
			N:   base64.RawURLEncoding.EncodeToString(pk.Key.N.Bytes()),
			E:   encodeExponent(pk.Key.E),
		})
	}
	return doc
}
