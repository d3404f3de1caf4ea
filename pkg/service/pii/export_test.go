package pii

var ResponseSchema = responseSchema
