/*
Package colorize turns a grayscale photograph into a color one with the
pretrained Caffe colorization network.

A Model Bundle is a directory holding three files with fixed names:

	colorization_deploy_v2.prototxt     network topology
	colorization_release_v2.caffemodel  trained weights
	pts_in_hull.npy                     313x2 table of ab cluster centers

The weights file does not carry the parameters of two layers near the end of
the network. They are rebuilt when the bundle is loaded: the cluster table,
transposed to a (2, 313, 1, 1) kernel, becomes the 1x1 projection of
class8_ab, and a (1, 313) tensor filled with 2.606 becomes the scale of
conv8_313_rh. The topology is cut after conv8_313 and those head layers run
in Go (see Head).

The pipeline itself is:

	BGR -> gray -> BGR -> float [0,1] -> Lab
	Lab -> resize 224x224 -> L - 50 -> network -> ab (56x56)
	ab -> resize to input size -> merge with full-size L -> BGR -> clip -> uint8
*/
package colorize
