package topic

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Prefix é o namespace fixo dos tópicos de conversa no broker
const Prefix = "chat/"

// Deriver mapeia um par não-ordenado de identidades para um único nome
// de tópico determinístico e não-invertível. Sem o segredo do servidor
// ninguém consegue derivar o tópico de um par arbitrário.
type Deriver struct {
	secret []byte
}

// NewDeriver valida o segredo na inicialização (falha fatal no startup,
// nunca por chamada).
func NewDeriver(secret string) (*Deriver, error) {
	if secret == "" {
		return nil, fmt.Errorf("segredo de derivação de tópico não pode ser vazio")
	}
	return &Deriver{secret: []byte(secret)}, nil
}

// DeriveTopic é puro e independente da ordem dos argumentos:
// ordena as duas identidades, concatena com ":", aplica HMAC-SHA-256
// sob o segredo e codifica em hex sob o prefixo fixo.
func (d *Deriver) DeriveTopic(idA, idB string) string {
	if idA > idB {
		idA, idB = idB, idA
	}
	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(idA + ":" + idB))
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}
