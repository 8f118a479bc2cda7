/*
go-vespadet is the numeric core of an on-device quantized object detector.  It
turns a raw captured image into a set of classified bounding boxes using a
pre-trained int8 quantized anchor-free network running under a fixed memory
budget.

A frame flows one way through the packages

	capture     -> RawFrame from a camera, directory of JPEGs or memory
	preprocess  -> letterbox, distort or crop resize to an S x S RGB canvas
	quantize    -> affine int8 quantization of the canvas into the input tensor
	Runtime     -> one blocking invoke of the inference engine
	postprocess -> DFL box decode of the output tensor
	sink        -> artifacts and detections written for audit

The pipeline package sequences these as a single synchronous worker.  The
inference engine is a Backend, hardware engines are selected with the tflite
and rknn build tags whilst the ReplayBackend replays recorded output tensors
in pure Go.

See the vespadet command in cmd/vespadet for usage.
*/
package vespadet
