package main

import (
	rnaseq "github.com/JPFBioinformatics/RNAseq-BULK"
)

func main() {
	rnaseq.Main()
}
