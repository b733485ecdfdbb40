package media

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
)

// Result describes what Serve put on the wire.
type Result struct {
	Status int
	Bytes  int64
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// Serve writes body as the response, honouring the request's Range header.
//
// Ownership of body passes to Serve. It is closed before Serve returns on
// every error or 416 path; otherwise it is attached to the response as a
// body stream and the server closes it once the write finishes or the
// client goes away. HEAD requests get the same headers without a body.
func Serve(c *fiber.Ctx, body io.ReadSeekCloser, size int64, contentType string) (Result, error) {
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	window, err := ParseRange(c.Get(fiber.HeaderRange), size)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnsatisfiable):
		_ = body.Close()
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		c.Status(fiber.StatusRequestedRangeNotSatisfiable)
		return Result{Status: fiber.StatusRequestedRangeNotSatisfiable}, nil
	default:
		window = Range{Start: 0, End: size - 1}
	}

	status := fiber.StatusOK
	if err == nil {
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, window.ContentRange(size))
	}

	n := window.Length()
	if size == 0 {
		n = 0
	}
	if window.Start > 0 {
		if _, err := body.Seek(window.Start, io.SeekStart); err != nil {
			_ = body.Close()
			return Result{}, fmt.Errorf("seek to %d: %w", window.Start, err)
		}
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Status(status)
	if c.Method() == fiber.MethodHead {
		_ = body.Close()
		c.Response().Header.SetContentLength(int(n))
		return Result{Status: status}, nil
	}
	c.Context().SetBodyStream(&limitedBody{Reader: io.LimitReader(body, n), Closer: body}, int(n))
	return Result{Status: status, Bytes: n}, nil
}
