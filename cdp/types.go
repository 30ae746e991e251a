package cdp

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type SessionId string
type TargetId string
type FrameId string
type BrowserContextId string
type ExecutionContextId int64
type RemoteObjectId string
type NodeId int64
type BackendNodeId int64

type commend struct {
	Id        int64               `json:"id"`
	Method    string              `json:"method"`
	Params    jsoniter.RawMessage `json:"params,omitempty"`
	SessionId SessionId           `json:"sessionId,omitempty"`
}

// Event is one incoming protocol event scoped to a session.
type Event struct {
	Method    string
	SessionId SessionId
	Params    jsoniter.RawMessage
}

func (obj Event) Decode(v any) error {
	if len(obj.Params) == 0 {
		return nil
	}
	return json.Unmarshal(obj.Params, v)
}

type RemoteObject struct {
	Type                string              `json:"type"`
	Subtype             string              `json:"subtype,omitempty"`
	ClassName           string              `json:"className,omitempty"`
	Value               jsoniter.RawMessage `json:"value,omitempty"`
	UnserializableValue string              `json:"unserializableValue,omitempty"`
	Description         string              `json:"description,omitempty"`
	ObjectId            RemoteObjectId      `json:"objectId,omitempty"`
}

type ExceptionDetails struct {
	ExceptionId        int64              `json:"exceptionId"`
	Text               string             `json:"text"`
	LineNumber         int64              `json:"lineNumber"`
	ColumnNumber       int64              `json:"columnNumber"`
	ScriptId           string             `json:"scriptId,omitempty"`
	Url                string             `json:"url,omitempty"`
	Exception          *RemoteObject      `json:"exception,omitempty"`
	ExecutionContextId ExecutionContextId `json:"executionContextId,omitempty"`
}

type CallArgument struct {
	Value               jsoniter.RawMessage `json:"value,omitempty"`
	UnserializableValue string              `json:"unserializableValue,omitempty"`
	ObjectId            RemoteObjectId      `json:"objectId,omitempty"`
}

type PropertyDescriptor struct {
	Name         string        `json:"name"`
	Value        *RemoteObject `json:"value,omitempty"`
	Writable     bool          `json:"writable,omitempty"`
	Get          *RemoteObject `json:"get,omitempty"`
	Set          *RemoteObject `json:"set,omitempty"`
	Configurable bool          `json:"configurable"`
	Enumerable   bool          `json:"enumerable"`
	IsOwn        bool          `json:"isOwn,omitempty"`
	Symbol       *RemoteObject `json:"symbol,omitempty"`
}

type ExecutionContextDescription struct {
	Id       ExecutionContextId  `json:"id"`
	Origin   string              `json:"origin"`
	Name     string              `json:"name"`
	UniqueId string              `json:"uniqueId"`
	AuxData  jsoniter.RawMessage `json:"auxData,omitempty"`
}

type Node struct {
	NodeId        NodeId        `json:"nodeId"`
	ParentId      NodeId        `json:"parentId,omitempty"`
	BackendNodeId BackendNodeId `json:"backendNodeId"`
	NodeType      int64         `json:"nodeType"`
	NodeName      string        `json:"nodeName"`
	LocalName     string        `json:"localName"`
	NodeValue     string        `json:"nodeValue"`
	FrameId       FrameId       `json:"frameId,omitempty"`
}

type TargetInfo struct {
	TargetId         TargetId         `json:"targetId"`
	Type             string           `json:"type"`
	Title            string           `json:"title"`
	Url              string           `json:"url"`
	Attached         bool             `json:"attached"`
	BrowserContextId BrowserContextId `json:"browserContextId,omitempty"`
}

type Frame struct {
	Id       FrameId `json:"id"`
	ParentId FrameId `json:"parentId,omitempty"`
	LoaderId string  `json:"loaderId"`
	Name     string  `json:"name,omitempty"`
	Url      string  `json:"url"`
}

type FrameTree struct {
	Frame       Frame       `json:"frame"`
	ChildFrames []FrameTree `json:"childFrames,omitempty"`
}
