package handlers

import (
	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/cmderr"
	"github.com/jongodb/jongodb/pkg/dispatch"
)

// Hello answers the handshake command drivers send on every connection
// (also dispatched as the legacy "isMaster" name).
func Hello(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	resp := bsontype.NewDocument()
	resp.Set("ismaster", bsontype.Bool(true))
	resp.Set("maxWireVersion", bsontype.Int32(17))
	resp.Set("minWireVersion", bsontype.Int32(0))
	resp.Set("maxBsonObjectSize", bsontype.Int32(16*1024*1024))
	resp.Set("maxMessageSizeBytes", bsontype.Int32(48*1000*1000))
	resp.Set("maxWriteBatchSize", bsontype.Int32(100000))
	resp.Set("readOnly", bsontype.Bool(false))
	return resp, nil
}

// Ping answers the liveness check with an otherwise-empty document.
func Ping(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	return bsontype.NewDocument(), nil
}

// BuildInfo reports a fixed version identity for the command surface.
func BuildInfo(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	resp := bsontype.NewDocument()
	resp.Set("version", bsontype.String("7.0.0-jongodb"))
	versionArray := bsontype.Array(bsontype.Int32(7), bsontype.Int32(0), bsontype.Int32(0))
	resp.Set("versionArray", versionArray)
	resp.Set("bits", bsontype.Int32(64))
	resp.Set("maxBsonObjectSize", bsontype.Int32(16*1024*1024))
	return resp, nil
}

// GetParameter answers parameter queries with a fixed, empty parameter
// set: the core does not model server parameters (spec §1 Non-goals).
func GetParameter(req *dispatch.Request) (*bsontype.Document, *cmderr.CommandError) {
	return bsontype.NewDocument(), nil
}
