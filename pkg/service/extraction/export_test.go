package extraction

var ResponseSchema = responseSchema
