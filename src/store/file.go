package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	"github.com/swiftcashproject/swiftnode/src/crypto"
	"github.com/ugorji/go/codec"
)

const (
	// CacheFileName is the registry snapshot file.
	CacheFileName = "swiftnodecache.dat"
	// PaymentsFileName is the payment votes snapshot file.
	PaymentsFileName = "swiftnodepayments.dat"

	// CacheMagic identifies a registry snapshot.
	CacheMagic = "SwiftnodeCache"
	// PaymentsMagic identifies a payments snapshot.
	PaymentsMagic = "SwiftnodePayments"

	maxPayload = 1 << 28
)

var jsonHandle = &codec.JsonHandle{}

func init() {
	jsonHandle.Canonical = true
}

// ReadResult is the outcome of reading a snapshot.
type ReadResult int

const (
	// Ok means the snapshot was read and decoded.
	Ok ReadResult = iota
	// FileError means the file could not be opened.
	FileError
	// HashReadError means the file is too short to hold a checksum.
	HashReadError
	// IncorrectHash means the checksum does not match the data.
	IncorrectHash
	// IncorrectMagicMessage means the file belongs to another component.
	IncorrectMagicMessage
	// IncorrectMagicNumber means the file belongs to another network.
	IncorrectMagicNumber
	// IncorrectFormat means the header is fine but the payload is not.
	IncorrectFormat
)

func (r ReadResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case FileError:
		return "FileError"
	case HashReadError:
		return "HashReadError"
	case IncorrectHash:
		return "IncorrectHash"
	case IncorrectMagicMessage:
		return "IncorrectMagicMessage"
	case IncorrectMagicNumber:
		return "IncorrectMagicNumber"
	case IncorrectFormat:
		return "IncorrectFormat"
	default:
		return "Unknown"
	}
}

// File is a snapshot file bound to a magic message and a network.
type File struct {
	path   string
	magic  string
	net    [4]byte
	logger *logrus.Entry
}

// NewFile returns a File at path. Nothing is read or written.
func NewFile(path string, magic string, params *chain.Params, logger *logrus.Entry) *File {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &File{
		path:   path,
		magic:  magic,
		net:    params.Net,
		logger: logger.WithField("file", filepath.Base(path)),
	}
}

// Path returns the location of the file.
func (f *File) Path() string {
	return f.path
}

// Magic returns the magic message the file is bound to.
func (f *File) Magic() string {
	return f.magic
}

// Read decodes the file into out. out is only written when the result is Ok
// or IncorrectFormat.
func (f *File) Read(out interface{}) ReadResult {
	data, err := ioutil.ReadFile(f.path)
	if err != nil {
		f.logger.WithError(err).Debug("Failed to open snapshot")
		return FileError
	}
	res := decodeSnapshot(data, f.magic, f.net, out)
	if res != Ok {
		f.logger.WithField("result", res).Error("Failed to read snapshot")
	}
	return res
}

// Write encodes in and replaces the file atomically.
func (f *File) Write(in interface{}) error {
	data, err := encodeSnapshot(f.magic, f.net, in)
	if err != nil {
		return err
	}

	tmp := f.path + ".new"
	if err := ioutil.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}

	f.logger.WithField("bytes", len(data)).Debug("Written snapshot")
	return nil
}

func encodeSnapshot(magic string, net [4]byte, in interface{}) ([]byte, error) {
	var payload []byte
	if err := codec.NewEncoderBytes(&payload, jsonHandle).Encode(in); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, magic); err != nil {
		return nil, err
	}
	buf.Write(net[:])
	if err := wire.WriteVarBytes(&buf, 0, payload); err != nil {
		return nil, err
	}

	sum := crypto.DoubleSHA256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte, magic string, net [4]byte, out interface{}) ReadResult {
	if len(data) < chainhash.HashSize {
		return HashReadError
	}
	body := data[:len(data)-chainhash.HashSize]

	sum := crypto.DoubleSHA256(body)
	if !bytes.Equal(sum[:], data[len(body):]) {
		return IncorrectHash
	}

	r := bytes.NewReader(body)
	msg, err := wire.ReadVarString(r, 0)
	if err != nil || msg != magic {
		return IncorrectMagicMessage
	}

	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil || n != net {
		return IncorrectMagicNumber
	}

	payload, err := wire.ReadVarBytes(r, 0, maxPayload, "payload")
	if err != nil || r.Len() != 0 {
		return IncorrectFormat
	}
	if err := codec.NewDecoderBytes(payload, jsonHandle).Decode(out); err != nil {
		return IncorrectFormat
	}
	return Ok
}
