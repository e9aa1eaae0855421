package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const contentTypeProtobuf = "application/x-protobuf"

// wantsProtobuf reports whether the client asked for a protobuf reply.
// Some terminal firmware sends "application/protobuf" instead.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if mt == contentTypeProtobuf || mt == "application/protobuf" {
			return true
		}
	}
	return false
}

// toStruct converts a JSON-encodable value into a google.protobuf.Struct so
// the protobuf and JSON bodies always carry the same fields.
func toStruct(body any) (*structpb.Struct, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// writeProto marshals body as a Struct and writes it with the given status.
func writeProto(w http.ResponseWriter, status int, body any) {
	st, err := toStruct(body)
	if err != nil {
		http.Error(w, "proto encode error", http.StatusInternalServerError)
		return
	}
	data, err := proto.Marshal(st)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

var errMissingFile = errors.New(`multipart field "file" is required`)

// readFormFile reads a multipart file part into memory.  The body has
// already been capped by MaxBytesReader.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, errMissingFile
	}
	defer f.Close()
	return io.ReadAll(f)
}
