package authn

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ParsePublicKey 解析 PEM 编码的 ed25519 公钥。
//
// PEM 块本身只标注为公钥，需要先经过 x509 解析再做类型断言。
func ParsePublicKey(pubPem string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pubPem))
	if block == nil {
		return nil, errors.New("[jsignage] failed to decode public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pubKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("[jsignage] public key is %T, not ed25519", key)
	}
	return pubKey, nil
}

// ParsePrivateKey 解析 PEM 编码的 ed25519 私钥（PKCS8）
func ParsePrivateKey(priPem string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(priPem))
	if block == nil {
		return nil, errors.New("[jsignage] failed to decode private key PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("[jsignage] private key is %T, not ed25519", key)
	}
	return priKey, nil
}
