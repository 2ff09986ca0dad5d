// Command hfn runs and inspects hfn handler packages.
package main

func main() {
	Execute()
}
