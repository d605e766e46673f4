package asyncgen

import (
	"encoding/gob"
	"io"
	"os"

	"golang.org/x/xerrors"
)

/*Codec serializes values for tempfile handoff.  The format is opaque
to the pipeline; the only requirement is that producer and consumer
agree, which they do by sharing the package-wide codec.*/
type Codec interface {
	Encode(w io.Writer, v interface{}) error
	Decode(r io.Reader) (interface{}, error)
}

var codec Codec = gobCodec{}

//SetCodec swaps the codec used for tempfile handoff.  Call it before
//any tempfile-producing job is running; tempfiles written by one codec
//cannot be redeemed by another.
func SetCodec(c Codec) { codec = c }

var tempDir string

//SetTempDir directs tempfile handoff to write scratch files under dir.
//The empty string (the default) uses the system temp directory.
func SetTempDir(dir string) { tempDir = dir }

type gobCodec struct{}

func (gobCodec) Encode(w io.Writer, v interface{}) error {
	return gob.NewEncoder(w).Encode(&v)
}

func (gobCodec) Decode(r io.Reader) (interface{}, error) {
	var v interface{}
	if err := gob.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func init() {
	// concrete types crossing a tempfile boundary must be known to gob
	gob.Register(0)
	gob.Register("")
	gob.Register(false)
	gob.Register(0.0)
	gob.Register([]interface{}(nil))
	gob.Register(map[string]interface{}(nil))
}

//writeTempfile serializes v into a fresh scratch file and returns its
//path.  Ownership of the file travels with the path; whoever
//materializes it removes it.
func writeTempfile(v interface{}) (string, error) {
	f, err := os.CreateTemp(tempDir, "asyncgen-*")
	if err != nil {
		return "", xerrors.Errorf("asyncgen: create tempfile: %w", err)
	}
	if err := codec.Encode(f, v); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", xerrors.Errorf("asyncgen: encode tempfile: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", xerrors.Errorf("asyncgen: write tempfile: %w", err)
	}
	return f.Name(), nil
}

//materializeTempfile reads the value back and destroys the file.
//Reads are destructive: a path is redeemed exactly once.
func materializeTempfile(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("asyncgen: open tempfile: %w", err)
	}
	v, decErr := codec.Decode(f)
	f.Close()
	if rmErr := os.Remove(path); rmErr != nil && decErr == nil {
		return nil, xerrors.Errorf("asyncgen: remove tempfile: %w", rmErr)
	}
	if decErr != nil {
		return nil, xerrors.Errorf("asyncgen: decode tempfile: %w", decErr)
	}
	return v, nil
}

//consumerMaterialize is the materialization step at the consumer
//boundary, where a tempfile-producing stage meets a consumer that
//asked for plain values.  A function variable so tests can observe it.
var consumerMaterialize = materializeTempfile
