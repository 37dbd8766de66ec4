package schema

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/bobmcallan/bqlite/internal/models"
)

// protocAvailable reports whether the protoc binary can be found on PATH,
// mirroring the "warn at startup" half of the original's external-binary
// dependency on protoc --bq-schema_out.
func protocAvailable() bool {
	_, err := exec.LookPath("protoc")
	return err == nil
}

// compileProto shells out to protoc and resolves the first top-level
// message declaration into a field tree.
func compileProto(ctx context.Context, protoSource string) ([]models.SchemaField, error) {
	md, err := CompileMessageDescriptor(ctx, protoSource)
	if err != nil {
		return nil, err
	}
	return fieldsFromMessage(md), nil
}

// CompileMessageDescriptor shells out to protoc to produce a
// FileDescriptorSet for a single .proto source string, then resolves and
// returns the first top-level message declaration's descriptor. Exported
// so internal/ingest can compile the same proto source into a decodable
// descriptor independently of the registry's field-tree view. This is the
// "fail at use" half: a caller that reaches here with protoc missing gets
// a schema-translation error, never a panic or a silent fallback.
func CompileMessageDescriptor(ctx context.Context, protoSource string) (protoreflect.MessageDescriptor, error) {
	if !protocAvailable() {
		return nil, fmt.Errorf("schema: protoc binary not found on PATH")
	}

	dir, err := os.MkdirTemp("", "bqlite-proto-*")
	if err != nil {
		return nil, fmt.Errorf("schema: creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	protoPath := filepath.Join(dir, "schema.proto")
	if err := os.WriteFile(protoPath, []byte(protoSource), 0o644); err != nil {
		return nil, fmt.Errorf("schema: writing proto source: %w", err)
	}

	descOut := filepath.Join(dir, "schema.desc")
	cmd := exec.CommandContext(ctx, "protoc",
		"--include_imports",
		"--descriptor_set_out="+descOut,
		"-I", dir,
		protoPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("schema: protoc failed: %w: %s", err, string(out))
	}

	raw, err := os.ReadFile(descOut)
	if err != nil {
		return nil, fmt.Errorf("schema: reading descriptor set: %w", err)
	}

	var fdSet descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &fdSet); err != nil {
		return nil, fmt.Errorf("schema: decoding descriptor set: %w", err)
	}
	if len(fdSet.File) == 0 {
		return nil, fmt.Errorf("schema: protoc produced an empty descriptor set")
	}

	files, err := protodesc.NewFiles(&fdSet)
	if err != nil {
		return nil, fmt.Errorf("schema: resolving descriptor set: %w", err)
	}

	target := fdSet.File[len(fdSet.File)-1]
	fd, err := files.FindFileByPath(target.GetName())
	if err != nil {
		return nil, fmt.Errorf("schema: locating compiled file: %w", err)
	}
	if fd.Messages().Len() == 0 {
		return nil, fmt.Errorf("schema: proto source declares no message")
	}

	return fd.Messages().Get(0), nil
}

// fieldsFromMessage converts a protobuf message descriptor into the
// BigQuery-style field tree the registry stores, applying the same tag
// mapping the translator uses in reverse.
func fieldsFromMessage(md protoreflect.MessageDescriptor) []models.SchemaField {
	fields := md.Fields()
	out := make([]models.SchemaField, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		out = append(out, fieldFromDescriptor(fd))
	}
	return out
}

func fieldFromDescriptor(fd protoreflect.FieldDescriptor) models.SchemaField {
	sf := models.SchemaField{
		Name: string(fd.Name()),
		Mode: models.ModeNullable,
	}
	if fd.Cardinality() == protoreflect.Repeated {
		sf.Mode = models.ModeRepeated
	}

	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		sf.Type = models.TypeRecord
		sf.Fields = fieldsFromMessage(fd.Message())
	case protoreflect.BoolKind:
		sf.Type = models.TypeBoolean
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		sf.Type = models.TypeFloat
	case protoreflect.Int32Kind, protoreflect.Int64Kind,
		protoreflect.Sint32Kind, protoreflect.Sint64Kind,
		protoreflect.Uint32Kind, protoreflect.Uint64Kind,
		protoreflect.Fixed32Kind, protoreflect.Fixed64Kind,
		protoreflect.Sfixed32Kind, protoreflect.Sfixed64Kind,
		protoreflect.EnumKind:
		sf.Type = models.TypeInteger
	default:
		sf.Type = models.TypeString
	}
	return sf
}
