package server

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"miniblob/pkg/helper/errors"
	"miniblob/pkg/helper/log"
	"miniblob/pkg/repo"
	"miniblob/pkg/wire"
)

// handleConnection reads exactly one request off conn, dispatches it to r
// through the wire codec, writes exactly one response, and closes the
// socket, per spec.md §4.5. Any error raised while parsing, dispatching,
// or responding is confined to this connection: it is converted to a
// best-effort success=false response rather than propagated, so a single
// bad connection never affects another or the server itself.
func handleConnection(ctx context.Context, conn net.Conn, r *repo.Repository, logger log.Logger, readTimeout, writeTimeout time.Duration) {
	defer conn.Close()

	access := logger.WithField("conn_id", uuid.NewString()).WithField("remote_addr", conn.RemoteAddr().String())
	start := time.Now()

	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}

	req, err := wire.ReadRequest(conn)
	if err != nil {
		access.WithError(err).Warn("failed to read request")
		if writeTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		}
		_ = wire.WriteResponse(conn, req.Type, failureResponse(err))
		return
	}

	if writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}

	resp := dispatch(req, r)
	duration := time.Since(start)

	requestsTotal.WithLabelValues(req.Type.String(), strconv.FormatBool(resp.Success)).Inc()
	requestDuration.WithLabelValues(req.Type.String()).Observe(duration.Seconds())

	if err := wire.WriteResponse(conn, req.Type, resp); err != nil {
		access.WithError(err).Warn("failed to write response")
		return
	}

	access.WithFields(map[string]interface{}{
		"type":     req.Type.String(),
		"file":     req.FileName,
		"branch":   req.Branch,
		"success":  resp.Success,
		"duration": duration.String(),
	}).Info("handled request")
}

// dispatch routes req to the matching Repository operation and shapes its
// result into a wire Response.
func dispatch(req wire.Request, r *repo.Repository) wire.Response {
	switch req.Type {
	case wire.SaveFile:
		hash, err := r.SaveFile(req.FileName, req.Content, req.Author, req.Message, req.Branch)
		if err != nil {
			return failureResponse(err)
		}
		observeDeltaRatio(r, hash, len(req.Content))
		if size, err := r.ObjectStoreSize(); err == nil {
			objectStoreBytes.Set(float64(size))
		}
		return wire.Response{Success: true, Message: wire.SaveFileMessage(hash)}

	case wire.GetLatest:
		content, err := r.GetLatestVersion(req.FileName, req.Branch)
		if err != nil {
			return failureResponse(err)
		}
		return wire.Response{Success: true, Message: "ok", Content: content}

	case wire.GetVersion:
		content, err := r.GetFileContent(req.FileName, req.Version)
		if err != nil {
			return failureResponse(err)
		}
		return wire.Response{Success: true, Message: "ok", Content: content}

	case wire.GetBranches:
		return wire.Response{Success: true, Message: "ok", Branches: r.GetBranches()}

	case wire.GetHistory:
		return wire.Response{Success: true, Message: "ok", History: r.GetFileHistory(req.FileName)}

	default:
		return wire.Response{Success: false, Message: "unknown request type"}
	}
}

// observeDeltaRatio records the ratio of the stored object's size to the
// content it represents, as a rough proxy for delta-encoding efficiency.
// A non-delta first commit naturally reports a ratio near 1.
func observeDeltaRatio(r *repo.Repository, hash string, contentLen int) {
	if contentLen == 0 {
		return
	}
	size, err := r.ObjectSize(hash)
	if err != nil {
		return
	}
	deltaRatio.Observe(float64(size) / float64(contentLen))
}

// failureResponse maps a domain error to a terse, non-leaking message
// rather than surfacing its wrapped internal context, per SPEC_FULL.md
// §1.2's per-connection error boundary.
func failureResponse(err error) wire.Response {
	return wire.Response{Success: false, Message: errorMessage(err)}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrVersionNotFound):
		return "version not found"
	case errors.Is(err, errors.ErrFileNotInBranch):
		return "file not in branch"
	case errors.Is(err, errors.ErrBranchNotFound):
		return "branch not found"
	case errors.Is(err, errors.ErrCorruptDelta):
		return "corrupt delta"
	case errors.Is(err, errors.ErrNotFound):
		return "not found"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid input"
	default:
		return "internal error"
	}
}
