package wire

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/valyala/bytebufferpool"

	"miniblob/pkg/helper/errors"
	"miniblob/pkg/repo"
)

var framePool = bytebufferpool.Pool{}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Protocolf("failed to read u32: %v", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Protocolf("failed to read %d-byte payload: %v", n, err)
	}
	return b, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, errors.Protocolf("failed to read bool: %v", err)
	}
	return buf[0] != 0, nil
}

func writeBool(w io.Writer, b bool) error {
	var buf [1]byte
	if b {
		buf[0] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

// readTime decodes a 64-bit little-endian Unix-seconds integer, the
// portable encoding this implementation pins time to instead of raw
// platform time_t (spec.md §9 open question).
func readTime(r io.Reader) (time.Time, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return time.Time{}, errors.Protocolf("failed to read time: %v", err)
	}
	sec := int64(binary.LittleEndian.Uint64(buf[:]))
	return time.Unix(sec, 0).UTC(), nil
}

func writeTime(w io.Writer, t time.Time) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.Unix()))
	_, err := w.Write(buf[:])
	return err
}

// ReadRequest decodes one request from r. SAVE_FILE's content field
// consumes the remainder of the stream, per spec.md §6 — the implementation
// keeps the reference framing rather than taking the length-prefix break it
// permits, since doing so keeps one request per connection unambiguous.
func ReadRequest(r io.Reader) (Request, error) {
	code, err := readU32(r)
	if err != nil {
		return Request{}, err
	}

	req := Request{Type: RequestType(code)}

	switch req.Type {
	case SaveFile:
		if req.FileName, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Branch, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Author, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Message, err = readString(r); err != nil {
			return Request{}, err
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return Request{}, errors.Protocolf("failed to read content: %v", err)
		}
		req.Content = content

	case GetLatest:
		if req.FileName, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Branch, err = readString(r); err != nil {
			return Request{}, err
		}

	case GetVersion:
		if req.FileName, err = readString(r); err != nil {
			return Request{}, err
		}
		if req.Version, err = readString(r); err != nil {
			return Request{}, err
		}

	case GetBranches:
		// empty body

	case GetHistory:
		if req.FileName, err = readString(r); err != nil {
			return Request{}, err
		}

	default:
		return Request{}, errors.Protocolf("unknown request type %d", code)
	}

	return req, nil
}

// WriteRequest encodes req to w, for use by client-side callers (tests,
// example clients) exercising the protocol end to end.
func WriteRequest(w io.Writer, req Request) error {
	if err := writeU32(w, uint32(req.Type)); err != nil {
		return err
	}

	switch req.Type {
	case SaveFile:
		if err := writeString(w, req.FileName); err != nil {
			return err
		}
		if err := writeString(w, req.Branch); err != nil {
			return err
		}
		if err := writeString(w, req.Author); err != nil {
			return err
		}
		if err := writeString(w, req.Message); err != nil {
			return err
		}
		_, err := w.Write(req.Content)
		return err

	case GetLatest:
		if err := writeString(w, req.FileName); err != nil {
			return err
		}
		return writeString(w, req.Branch)

	case GetVersion:
		if err := writeString(w, req.FileName); err != nil {
			return err
		}
		return writeString(w, req.Version)

	case GetBranches:
		return nil

	case GetHistory:
		return writeString(w, req.FileName)

	default:
		return errors.Protocolf("unknown request type %d", req.Type)
	}
}

// WriteResponse encodes resp to w, selecting the payload variant by
// reqType per spec.md §4.4. Marshalling uses a pooled buffer so the hot
// accept path does not allocate a fresh one per response.
func WriteResponse(w io.Writer, reqType RequestType, resp Response) error {
	buf := framePool.Get()
	defer framePool.Put(buf)
	buf.Reset()

	if err := writeBool(buf, resp.Success); err != nil {
		return err
	}
	if err := writeString(buf, resp.Message); err != nil {
		return err
	}

	if resp.Success {
		switch reqType {
		case GetLatest, GetVersion:
			if err := writeBytes(buf, resp.Content); err != nil {
				return err
			}
		case GetBranches:
			if err := writeU32(buf, uint32(len(resp.Branches))); err != nil {
				return err
			}
			for _, name := range resp.Branches {
				if err := writeString(buf, name); err != nil {
					return err
				}
			}
		case GetHistory:
			if err := writeU32(buf, uint32(len(resp.History))); err != nil {
				return err
			}
			for _, v := range resp.History {
				if err := writeVersionRecord(buf, v); err != nil {
					return err
				}
			}
		case SaveFile:
			// no additional payload
		}
	}

	_, err := w.Write(buf.B)
	return err
}

// ReadResponse decodes a response written by WriteResponse for a request
// of type reqType.
func ReadResponse(r io.Reader, reqType RequestType) (Response, error) {
	var resp Response
	var err error

	if resp.Success, err = readBool(r); err != nil {
		return Response{}, err
	}
	if resp.Message, err = readString(r); err != nil {
		return Response{}, err
	}

	if !resp.Success {
		return resp, nil
	}

	switch reqType {
	case GetLatest, GetVersion:
		if resp.Content, err = readBytes(r); err != nil {
			return Response{}, err
		}
	case GetBranches:
		count, err := readU32(r)
		if err != nil {
			return Response{}, err
		}
		resp.Branches = make([]string, count)
		for i := range resp.Branches {
			if resp.Branches[i], err = readString(r); err != nil {
				return Response{}, err
			}
		}
	case GetHistory:
		count, err := readU32(r)
		if err != nil {
			return Response{}, err
		}
		resp.History = make([]repo.FileVersion, count)
		for i := range resp.History {
			if resp.History[i], err = readVersionRecord(r); err != nil {
				return Response{}, err
			}
		}
	case SaveFile:
		// no additional payload
	}

	return resp, nil
}

func writeVersionRecord(w io.Writer, v repo.FileVersion) error {
	if err := writeString(w, v.Hash); err != nil {
		return err
	}
	if err := writeString(w, v.ParentHash); err != nil {
		return err
	}
	if err := writeTime(w, v.Timestamp); err != nil {
		return err
	}
	if err := writeString(w, v.Author); err != nil {
		return err
	}
	if err := writeString(w, v.Message); err != nil {
		return err
	}
	return writeBool(w, v.IsDelta)
}

func readVersionRecord(r io.Reader) (repo.FileVersion, error) {
	var v repo.FileVersion
	var err error

	if v.Hash, err = readString(r); err != nil {
		return v, err
	}
	if v.ParentHash, err = readString(r); err != nil {
		return v, err
	}
	if v.Timestamp, err = readTime(r); err != nil {
		return v, err
	}
	if v.Author, err = readString(r); err != nil {
		return v, err
	}
	if v.Message, err = readString(r); err != nil {
		return v, err
	}
	if v.IsDelta, err = readBool(r); err != nil {
		return v, err
	}
	return v, nil
}
