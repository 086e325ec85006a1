package protobuf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Compile reads a .proto file from disk and returns the descriptor of the named
// record message. message may be a full name ("energy.v1.Reading"), a short
// name ("Reading"), or empty to select the first top-level message.
func Compile(ctx context.Context, path, message string) (protoreflect.MessageDescriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proto file %s: %w", path, err)
	}
	return CompileSource(ctx, filepath.Base(path), string(content), message)
}

// CompileSource compiles an in-memory .proto definition. Only well-known types
// may be imported.
func CompileSource(ctx context.Context, fileName, content, message string) (protoreflect.MessageDescriptor, error) {
	resolver := &singleFileResolver{
		fileName: fileName,
		content:  content,
	}

	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolver),
		SourceInfoMode: protocompile.SourceInfoNone,
	}

	files, err := compiler.Compile(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile proto: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files compiled")
	}

	messages := files[0].Messages()
	if messages.Len() == 0 {
		return nil, fmt.Errorf("proto must define at least one message")
	}
	if message == "" {
		return messages.Get(0), nil
	}

	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		if string(md.FullName()) == message || string(md.Name()) == message {
			return md, nil
		}
	}
	return nil, fmt.Errorf("message %q not found in %s", message, fileName)
}

// singleFileResolver provides proto content for compilation.
type singleFileResolver struct {
	fileName string
	content  string
}

func (r *singleFileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	if path == r.fileName {
		return protocompile.SearchResult{
			Source: strings.NewReader(r.content),
		}, nil
	}
	return protocompile.SearchResult{}, fmt.Errorf("file not found: %s", path)
}
