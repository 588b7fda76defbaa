package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
)

// MessageKind distinguishes the two host-chain message types a validator
// can submit (spec §9 "Polymorphic on-chain message envelope").
type MessageKind uint8

const (
	KindSignInput MessageKind = 1
	KindAddFunds  MessageKind = 2
)

// SignInputBody is the body of a SignInput message: a signature over one
// input of a specific anchoring proposal.
type SignInputBody struct {
	TransactionBytes []byte // canonical-encoded AnchoringTransaction
	Input            uint32
	InputSignature   []byte
}

// AddFundsBody is the body of an AddFunds message: nomination of a new
// funding UTXO.
type AddFundsBody struct {
	TransactionBytes []byte // canonical-encoded Bitcoin transaction
}

// Envelope is the common capability set the source's AnchoringMessage sum
// type exposes over both message bodies: SenderKey, Raw, VerifySignature,
// ContentHash.
type Envelope struct {
	Kind      MessageKind
	Sender    hostkey.PublicKey
	SignInput *SignInputBody // set iff Kind == KindSignInput
	AddFunds  *AddFundsBody  // set iff Kind == KindAddFunds
	Signature []byte         // 65-byte recoverable signature over Raw(), empty until Sign
}

// NewSignInputEnvelope builds an unsigned SignInput envelope.
func NewSignInputEnvelope(sender hostkey.PublicKey, body SignInputBody) *Envelope {
	return &Envelope{Kind: KindSignInput, Sender: sender, SignInput: &body}
}

// NewAddFundsEnvelope builds an unsigned AddFunds envelope.
func NewAddFundsEnvelope(sender hostkey.PublicKey, body AddFundsBody) *Envelope {
	return &Envelope{Kind: KindAddFunds, Sender: sender, AddFunds: &body}
}

// SenderKey returns the claimed sender's host-chain public key.
func (e *Envelope) SenderKey() hostkey.PublicKey { return e.Sender }

const (
	envelopeKindField      = protowire.Number(1)
	envelopeSenderField    = protowire.Number(2)
	envelopeSignInputField = protowire.Number(3)
	envelopeAddFundsField  = protowire.Number(4)

	signInputTxField   = protowire.Number(1)
	signInputInputFld  = protowire.Number(2)
	signInputSigField  = protowire.Number(3)
	addFundsTxField    = protowire.Number(1)
)

// Raw returns the canonical encoding of the envelope's body (kind, sender,
// and message-specific fields), excluding the signature — the bytes that
// are signed and whose content hash identifies the message.
func (e *Envelope) Raw() []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, envelopeKindField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(e.Kind))

	buf = protowire.AppendTag(buf, envelopeSenderField, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Sender.Bytes())

	switch e.Kind {
	case KindSignInput:
		var body []byte
		body = protowire.AppendTag(body, signInputTxField, protowire.BytesType)
		body = protowire.AppendBytes(body, e.SignInput.TransactionBytes)
		body = protowire.AppendTag(body, signInputInputFld, protowire.VarintType)
		body = protowire.AppendVarint(body, uint64(e.SignInput.Input))
		body = protowire.AppendTag(body, signInputSigField, protowire.BytesType)
		body = protowire.AppendBytes(body, e.SignInput.InputSignature)

		buf = protowire.AppendTag(buf, envelopeSignInputField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	case KindAddFunds:
		var body []byte
		body = protowire.AppendTag(body, addFundsTxField, protowire.BytesType)
		body = protowire.AppendBytes(body, e.AddFunds.TransactionBytes)

		buf = protowire.AppendTag(buf, envelopeAddFundsField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	return buf
}

// ContentHash is the canonical content hash of the envelope's body.
func (e *Envelope) ContentHash() [32]byte {
	return hostkey.ContentHash(e.Raw())
}

// Sign computes and attaches a signature over the envelope's content hash.
// The signer must match e.Sender.
func (e *Envelope) Sign(priv *hostkey.PrivateKey) error {
	if priv.PublicKey() != e.Sender {
		return fmt.Errorf("sign envelope: signer does not match declared sender")
	}
	sig, err := priv.Sign(e.ContentHash())
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	e.Signature = sig
	return nil
}

// VerifySignature checks the envelope's attached signature against its
// declared sender and content hash.
func (e *Envelope) VerifySignature() (bool, error) {
	if len(e.Signature) == 0 {
		return false, fmt.Errorf("envelope has no signature")
	}
	return hostkey.VerifySignature(e.Sender, e.ContentHash(), e.Signature)
}

// Encode serializes the full envelope, including its signature, for
// transport as a host-chain transaction payload.
func (e *Envelope) Encode() []byte {
	buf := e.Raw()
	buf = protowire.AppendTag(buf, 5, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Signature)
	return buf
}

// DecodeEnvelope parses the wire form produced by Encode.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	e := &Envelope{}
	var sawKind, sawSender bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: envelope: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case envelopeKindField:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: envelope kind: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			e.Kind = MessageKind(v)
			sawKind = true
		case envelopeSenderField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: envelope sender: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			sender, err := hostkey.ParsePublicKey(b)
			if err != nil {
				return nil, fmt.Errorf("%w: envelope sender: %s", config.ErrDecode, err)
			}
			e.Sender = sender
			sawSender = true
		case envelopeSignInputField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: envelope sign_input: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			body, err := decodeSignInputBody(b)
			if err != nil {
				return nil, err
			}
			e.SignInput = body
		case envelopeAddFundsField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: envelope add_funds: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			body, err := decodeAddFundsBody(b)
			if err != nil {
				return nil, err
			}
			e.AddFunds = body
		case 5:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: envelope signature: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			e.Signature = b
		default:
			if typ == protowire.BytesType {
				b, n := protowire.ConsumeBytes(data)
				if n < 0 {
					return nil, fmt.Errorf("%w: envelope: unknown field %d", config.ErrDecode, num)
				}
				_ = b
				data = data[n:]
			} else {
				return nil, fmt.Errorf("%w: envelope: unknown field %d", config.ErrDecode, num)
			}
		}
	}

	if !sawKind || !sawSender {
		return nil, fmt.Errorf("%w: envelope missing kind or sender", config.ErrDecode)
	}
	switch e.Kind {
	case KindSignInput:
		if e.SignInput == nil {
			return nil, fmt.Errorf("%w: envelope kind SignInput missing body", config.ErrDecode)
		}
	case KindAddFunds:
		if e.AddFunds == nil {
			return nil, fmt.Errorf("%w: envelope kind AddFunds missing body", config.ErrDecode)
		}
	default:
		return nil, fmt.Errorf("%w: envelope: unknown kind %d", config.ErrDecode, e.Kind)
	}

	return e, nil
}

func decodeSignInputBody(data []byte) (*SignInputBody, error) {
	body := &SignInputBody{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: sign_input: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case signInputTxField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: sign_input tx: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			body.TransactionBytes = b
		case signInputInputFld:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: sign_input input: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			body.Input = uint32(v)
		case signInputSigField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: sign_input signature: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			body.InputSignature = b
		default:
			if typ == protowire.BytesType {
				_, n := protowire.ConsumeBytes(data)
				data = data[n:]
			} else {
				v, n := protowire.ConsumeVarint(data)
				_ = v
				data = data[n:]
			}
		}
	}
	return body, nil
}

func decodeAddFundsBody(data []byte) (*AddFundsBody, error) {
	body := &AddFundsBody{}
	for len(data) > 0 {
		num, _, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: add_funds: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		if num != addFundsTxField {
			return nil, fmt.Errorf("%w: add_funds: unexpected field %d", config.ErrDecode, num)
		}
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: add_funds tx: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		body.TransactionBytes = b
	}
	return body, nil
}
