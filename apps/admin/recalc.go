package main

import "fmt"

func (cli *commandLine) recalc() error {
	n, err := cli.calc.RecalculateAll()
	if err != nil {
		return err
	}
	fmt.Printf("recalculated %d submission(s)\n", n)
	return nil
}
