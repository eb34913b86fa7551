// Package codec implements KeyCodec (spec §4.1): parsing an RFC 4880
// §11.1 transferable-key packet sequence into a wire.TransferableKey,
// serializing it back out, and merging two parses of "the same" key.
// Packet I/O itself — reading/writing individual packets, ASCII-armor
// framing — is delegated to github.com/ProtonMail/go-crypto/openpgp/packet
// and openpgp/armor, the external PacketIO collaborator spec.md places out
// of scope; this package owns only the packet-sequence grammar and the
// merge semantics, grounded on openpgp/v2's ReadEntity/ReadKeyRing
// (keys.go) and on original_source/src/librekey/key_store_pgp.cpp's
// handling of a GPG-style keyring stream (trust packets skipped, bare
// subkey sequences tolerated).
package codec

import (
	"bufio"
	"bytes"
	"io"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/diag"
	"github.com/zoonfafer/rnp/pgperror"
	"github.com/zoonfafer/rnp/wire"
)

// KeyCodec parses and serializes transferable-key packet sequences. It
// carries only an injected diagnostic sink (spec §9: no global logger).
type KeyCodec struct {
	Sink diag.Sink
}

// New returns a KeyCodec. A nil sink is replaced with diag.Discard.
func New(sink diag.Sink) *KeyCodec {
	if sink == nil {
		sink = diag.Discard
	}
	return &KeyCodec{Sink: sink}
}

func (c *KeyCodec) log(level diag.Level, msg string, fields ...diag.Field) {
	c.Sink.Event(level, msg, fields...)
}

// Parse reads one or more transferable-key sequences from r, which may be
// ASCII-armored or raw binary, and returns one TransferableKey per primary
// key encountered. A leading bare subkey (no preceding primary in the same
// sequence) is returned as a TransferableKey whose Primary field is that
// subkey and whose Subkeys list is empty, matching RNP's tolerance for
// orphaned subkey packets during keyring load.
func (c *KeyCodec) Parse(r io.Reader) ([]*wire.TransferableKey, error) {
	raw, err := maybeDearmor(r)
	if err != nil {
		return nil, err
	}
	pr := packet.NewReader(raw)

	var keys []*wire.TransferableKey
	var cur *wire.TransferableKey
	var curUID *wire.TransferableUserID
	var curSub *wire.TransferableSubkey

	flushUID := func() {
		if cur != nil && curUID != nil {
			cur.UserIDs = append(cur.UserIDs, curUID)
			curUID = nil
		}
	}
	flushSub := func() {
		if cur != nil && curSub != nil {
			cur.Subkeys = append(cur.Subkeys, curSub)
			curSub = nil
		}
	}
	flushKey := func() {
		flushUID()
		flushSub()
		if cur != nil {
			keys = append(keys, cur)
			cur = nil
		}
	}

	for {
		p, err := pr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pgperror.Wrap(pgperror.BadFormat, "reading packet", err)
		}

		switch pkt := p.(type) {
		case *packet.PublicKey:
			if pkt.IsSubkey {
				flushUID()
				flushSub()
				if cur == nil {
					c.log(diag.LevelWarn, "subkey packet with no preceding primary key", diag.F("keyid", pkt.KeyIdString()))
					cur = &wire.TransferableKey{Primary: wire.KeyPacket{Public: pkt}}
					continue
				}
				curSub = &wire.TransferableSubkey{Key: wire.KeyPacket{Public: pkt}}
				continue
			}
			flushKey()
			cur = &wire.TransferableKey{Primary: wire.KeyPacket{Public: pkt}}

		case *packet.PrivateKey:
			pub := &pkt.PublicKey
			if pkt.IsSubkey {
				flushUID()
				flushSub()
				if cur == nil {
					cur = &wire.TransferableKey{Primary: wire.KeyPacket{Public: pub, Private: pkt}}
					continue
				}
				curSub = &wire.TransferableSubkey{Key: wire.KeyPacket{Public: pub, Private: pkt}}
				continue
			}
			flushKey()
			cur = &wire.TransferableKey{Primary: wire.KeyPacket{Public: pub, Private: pkt}}

		case *packet.UserId:
			if cur == nil {
				c.log(diag.LevelWarn, "user-id packet with no preceding primary key")
				continue
			}
			flushUID()
			flushSub()
			curUID = &wire.TransferableUserID{UserID: wire.UserID{Text: pkt.Id}}

		case *packet.Signature:
			sig := wrapSignature(pkt)
			switch {
			case curSub != nil:
				curSub.Signatures = append(curSub.Signatures, sig)
			case curUID != nil:
				curUID.Signatures = append(curUID.Signatures, sig)
			case cur != nil:
				cur.Directs = append(cur.Directs, sig)
			default:
				c.log(diag.LevelWarn, "signature packet with no preceding key material")
			}

		default:
			// Trust packets and anything else we don't model are
			// skipped and never round-tripped, matching key_store_pgp.cpp.
		}
	}
	flushKey()

	if len(keys) == 0 {
		return nil, pgperror.New(pgperror.BadFormat, "no key packets found")
	}

	for _, k := range keys {
		if k.Primary.Private != nil {
			for _, sk := range k.Subkeys {
				if sk.Key.Private == nil {
					c.log(diag.LevelWarn, "secret primary key with public-only subkey", diag.F("fingerprint", k.Fingerprint()))
					break
				}
			}
		}
	}

	return keys, nil
}

func wrapSignature(pkt *packet.Signature) *wire.Signature {
	var buf bytes.Buffer
	_ = pkt.Serialize(&buf)
	return &wire.Signature{Packet: pkt, Raw: buf.Bytes()}
}

func maybeDearmor(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(1)
	if err != nil && err != io.EOF {
		return nil, pgperror.Wrap(pgperror.BadFormat, "reading input", err)
	}
	if len(peek) > 0 && peek[0] == '-' {
		block, err := armor.Decode(br)
		if err != nil {
			return nil, pgperror.Wrap(pgperror.BadFormat, "decoding armor", err)
		}
		return block.Body, nil
	}
	return br, nil
}

// Serialize writes key back out as a transferable-key packet sequence
// (spec §4.1: primary, direct sigs, user-id groups, subkey groups, in that
// order). If armored is true the output is ASCII-armored with the
// appropriate block type for public or secret material.
func (c *KeyCodec) Serialize(key *wire.TransferableKey, w io.Writer, armored bool) error {
	var buf bytes.Buffer
	if err := c.serializeRaw(key, &buf); err != nil {
		return err
	}
	if !armored {
		_, err := w.Write(buf.Bytes())
		return err
	}

	blockType := openpgp.PublicKeyType
	if key.Primary.Private != nil {
		blockType = openpgp.PrivateKeyType
	}
	aw, err := armor.Encode(w, blockType, nil)
	if err != nil {
		return pgperror.Wrap(pgperror.Write, "opening armor writer", err)
	}
	if _, err := aw.Write(buf.Bytes()); err != nil {
		return pgperror.Wrap(pgperror.Write, "writing armored body", err)
	}
	return aw.Close()
}

func (c *KeyCodec) serializeRaw(key *wire.TransferableKey, w io.Writer) error {
	if err := serializeKeyPacket(w, key.Primary); err != nil {
		return err
	}
	for _, s := range key.Directs {
		if err := s.Packet.Serialize(w); err != nil {
			return pgperror.Wrap(pgperror.Write, "serializing direct signature", err)
		}
	}
	for _, u := range key.UserIDs {
		if u.UserID.IsAttribute() {
			if _, err := w.Write(u.UserID.AttributeData); err != nil {
				return pgperror.Wrap(pgperror.Write, "serializing user attribute", err)
			}
		} else {
			uid := &packet.UserId{Id: u.UserID.Text}
			if err := uid.Serialize(w); err != nil {
				return pgperror.Wrap(pgperror.Write, "serializing user id", err)
			}
		}
		for _, s := range u.Signatures {
			if err := s.Packet.Serialize(w); err != nil {
				return pgperror.Wrap(pgperror.Write, "serializing user-id signature", err)
			}
		}
	}
	for _, sk := range key.Subkeys {
		if err := serializeKeyPacket(w, sk.Key); err != nil {
			return err
		}
		for _, s := range sk.Signatures {
			if err := s.Packet.Serialize(w); err != nil {
				return pgperror.Wrap(pgperror.Write, "serializing subkey signature", err)
			}
		}
	}
	return nil
}

func serializeKeyPacket(w io.Writer, k wire.KeyPacket) error {
	if k.Private != nil {
		return wrapWriteErr(k.Private.Serialize(w))
	}
	return wrapWriteErr(k.Public.Serialize(w))
}

func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	return pgperror.Wrap(pgperror.Write, "serializing key packet", err)
}
